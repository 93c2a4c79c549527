package model

import "net/url"

// The browser sends raw form fields; handlers decode them into these
// structs before anything else runs. A missing field decodes to ok=false
// on the corresponding lookup, never to a nil dereference — absence is a
// typed case the validator rejects with a field-specific message.

// LoginForm carries the fields of the login page's POST.
type LoginForm struct {
	Username  string
	Password  string
	CSRFToken string
}

// RegisterForm carries the fields of the registration page's POST.
// Password1/Password2 mirror the form's field names: the password and its
// confirmation.
type RegisterForm struct {
	Username  string
	Password1 string
	Password2 string
	CSRFToken string
}

// ParseLoginForm decodes already-parsed form values into a LoginForm.
// url.Values.Get returns "" for absent keys, which downstream validation
// treats the same as an empty submission.
func ParseLoginForm(values url.Values) LoginForm {
	return LoginForm{
		Username:  values.Get("username"),
		Password:  values.Get("password"),
		CSRFToken: values.Get("csrf_token"),
	}
}

// ParseRegisterForm decodes already-parsed form values into a RegisterForm.
func ParseRegisterForm(values url.Values) RegisterForm {
	return RegisterForm{
		Username:  values.Get("username"),
		Password1: values.Get("password1"),
		Password2: values.Get("password2"),
		CSRFToken: values.Get("csrf_token"),
	}
}
