// Package agency is the admin-managed directory of service agencies.
package agency

import (
	"net/url"
	"time"

	"github.com/alecgard/dktadmin/internal/form"
	"github.com/alecgard/dktadmin/internal/resource"
)

// Path is the backend collection path.
const Path = "/agencies"

// Labels name agencies in notifications.
var Labels = resource.Labels{Noun: "Agency", Plural: "agencies"}

// Agency is a service location as returned by the backend.
type Agency struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a Agency) Key() int64 { return a.ID }

// Input is the create/update payload. It has no id or timestamps.
type Input struct {
	Name        string `json:"name" form:"name" validate:"required"`
	Address     string `json:"address" form:"address" validate:"required"`
	Phone       string `json:"phone" form:"phone" validate:"required"`
	Email       string `json:"email" form:"email" validate:"required,email"`
	Description string `json:"description" form:"description"`
}

// InputFrom returns the editable fields of a.
func InputFrom(a Agency) Input {
	return Input{
		Name:        a.Name,
		Address:     a.Address,
		Phone:       a.Phone,
		Email:       a.Email,
		Description: a.Description,
	}
}

// ParseForm reads an Input from submitted form values and validates it.
// The Input is returned even when validation fails so the form can be
// redisplayed.
func ParseForm(values url.Values) (Input, error) {
	in := Input{
		Name:        form.Trimmed(values, "name"),
		Address:     form.Trimmed(values, "address"),
		Phone:       form.Trimmed(values, "phone"),
		Email:       form.Trimmed(values, "email"),
		Description: form.Trimmed(values, "description"),
	}
	return in, form.Validate(in)
}

// Controller manages the agency collection.
type Controller = resource.Controller[Agency, Input]

// NewController creates a controller for the agency collection.
func NewController(api resource.Doer, cfg resource.Config) *Controller {
	cfg.Path = Path
	cfg.Labels = Labels
	return resource.New[Agency, Input](api, cfg)
}
