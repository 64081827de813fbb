package mailer

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var letterTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	SubjectActivation    = "Activate your account"
	SubjectPasswordReset = "Reset your password"
)

type LetterData struct {
	Username string
	Link     string
}

// ActivationLetter renders the html body for the activation email
func ActivationLetter(data LetterData) (string, error) {
	return renderLetter("activation.html", data)
}

// PasswordResetLetter renders the html body for the password reset email
func PasswordResetLetter(data LetterData) (string, error) {
	return renderLetter("password_reset.html", data)
}

func renderLetter(name string, data LetterData) (string, error) {
	var b strings.Builder
	if err := letterTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("error while rendering letter %q. Err: %w", name, err)
	}
	return b.String(), nil
}
