package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

// Fields are the seven shipping values an address fills in.
type Fields struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Profile is the authenticated caller as known from the access token.
type Profile struct {
	UserID string
	Email  string
	Name   string
	Token  string
}

func (p *Profile) authenticated() bool {
	return p != nil && strings.TrimSpace(p.Token) != ""
}

// State is the resolver's memory inside a checkout session. Saved is the address as
// originally fetched and is never modified by edits.
type State struct {
	Mode           enums.AddressMode `json:"mode"`
	SavedAddressID string            `json:"saved_address_id,omitempty"`
	Saved          *Fields           `json:"saved,omitempty"`
}

// HasSaved reports whether a saved address was fetched for the session.
func (s State) HasSaved() bool {
	return s.Saved != nil
}

// AllowsShippingEdit is false while the saved address drives the shipping fields.
func (s State) AllowsShippingEdit() bool {
	return s.Mode != enums.AddressModeSaved
}

// Fetcher loads the caller's saved addresses.
type Fetcher interface {
	FetchUserAddresses(ctx context.Context, token string) ([]storefrontapi.Address, error)
}

// Resolver decides whether shipping starts from a saved address or blank entry.
type Resolver struct {
	fetcher Fetcher
	logger  *logger.Logger
}

func NewResolver(fetcher Fetcher, logg *logger.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("address fetcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Resolver{fetcher: fetcher, logger: logg}, nil
}

// Resolve runs on session start. It returns the initial state and the shipping
// values to apply. Guests and failed fetches fall back to manual entry.
func (r *Resolver) Resolve(ctx context.Context, profile *Profile) (State, Fields) {
	manual := State{Mode: enums.AddressModeManual}
	if !profile.authenticated() {
		return manual, blankFor(profile)
	}

	addresses, err := r.fetcher.FetchUserAddresses(ctx, profile.Token)
	if err != nil {
		r.logger.Warn(ctx, fmt.Sprintf("address.fetch_failed: %v", err))
		return manual, blankFor(profile)
	}
	chosen, ok := pickDefault(addresses)
	if !ok {
		return manual, blankFor(profile)
	}

	saved := fromAPI(chosen)
	// Saved mode locks shipping edits, so a saved address without contact
	// details takes them from the profile.
	if saved.Name == "" {
		saved.Name = strings.TrimSpace(profile.Name)
	}
	if saved.Email == "" {
		saved.Email = strings.TrimSpace(profile.Email)
	}
	return State{
		Mode:           enums.AddressModeSaved,
		SavedAddressID: chosen.ID,
		Saved:          &saved,
	}, saved
}

// Toggle switches between the saved address and manual entry. A nil Fields result
// means the shipping values stay as they are.
func Toggle(state State, useSaved bool, profile *Profile) (State, *Fields, error) {
	if useSaved {
		if !state.HasSaved() {
			return state, nil, pkgerrors.New(pkgerrors.CodeValidation, "no saved address available").
				WithDetails(map[string]string{"use_saved_address": "no saved address on file"})
		}
		restored := *state.Saved
		state.Mode = enums.AddressModeSaved
		return state, &restored, nil
	}

	if state.Mode == enums.AddressModeManual {
		return state, nil, nil
	}
	blank := blankFor(profile)
	state.Mode = enums.AddressModeManual
	return state, &blank, nil
}

func pickDefault(addresses []storefrontapi.Address) (storefrontapi.Address, bool) {
	if len(addresses) == 0 {
		return storefrontapi.Address{}, false
	}
	for _, a := range addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return addresses[0], true
}

func fromAPI(a storefrontapi.Address) Fields {
	return Fields{
		Name:       strings.TrimSpace(a.Name),
		Email:      strings.TrimSpace(a.Email),
		Phone:      strings.TrimSpace(a.Phone),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// blankFor is the manual-entry starting point: empty except name and email from the profile.
func blankFor(profile *Profile) Fields {
	if profile == nil {
		return Fields{}
	}
	return Fields{
		Name:  strings.TrimSpace(profile.Name),
		Email: strings.TrimSpace(profile.Email),
	}
}
