// Package account manages console users through the backend's /users
// collection.
package account

import (
	"net/url"
	"time"

	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/form"
	"github.com/alecgard/dktadmin/internal/resource"
)

const Path = "/users"

var Labels = resource.Labels{Noun: "User", Plural: "users"}

// User is a managed account.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Key() int64 { return u.ID }

// Input is the create/update payload. The confirmation is checked locally
// and never sent; an empty password on update keeps the current one.
type Input struct {
	Name                 string    `json:"name" form:"name" validate:"required"`
	Email                string    `json:"email" form:"email" validate:"required,email"`
	Role                 auth.Role `json:"role" form:"role" validate:"required,oneof=admin agent client"`
	Password             string    `json:"password,omitempty" form:"password"`
	PasswordConfirmation string    `json:"-" form:"password_confirmation" validate:"eqfield=Password"`
}

type createInput struct {
	Input
	Password string `form:"password" validate:"required"`
}

// InputFrom returns the editable fields of u with blank passwords.
func InputFrom(u User) Input {
	return Input{Name: u.Name, Email: u.Email, Role: u.Role}
}

// ParseForm reads an Input from submitted values. creating makes the
// password mandatory. Role defaults to client.
func ParseForm(values url.Values, creating bool) (Input, error) {
	in := Input{
		Name:                 form.Trimmed(values, "name"),
		Email:                form.Trimmed(values, "email"),
		Role:                 auth.Role(form.Trimmed(values, "role")),
		Password:             values.Get("password"),
		PasswordConfirmation: values.Get("password_confirmation"),
	}
	if in.Role == "" {
		in.Role = auth.RoleClient
	}
	return in, Validate(in, creating)
}

// Validate checks in. A password/confirmation mismatch is reported before
// any other problem so nothing is submitted.
func Validate(in Input, creating bool) error {
	if in.Password != in.PasswordConfirmation {
		return form.Errors{"password_confirmation": form.PasswordMismatch}
	}
	if creating {
		return form.Validate(createInput{Input: in, Password: in.Password})
	}
	return form.Validate(in)
}

type Controller = resource.Controller[User, Input]

func NewController(api resource.Doer, cfg resource.Config) *Controller {
	cfg.Path = Path
	cfg.Labels = Labels
	return resource.New[User, Input](api, cfg)
}
