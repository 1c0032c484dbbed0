package ux

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/stockbook/internal/api"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

// EnhanceError attaches recovery suggestions to errors that arrive without
// any. Coded errors already carry theirs and are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var coded *sberrors.StockbookError
	if errors.As(err, &coded) {
		return err
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Kind == api.KindTransport:
		return sberrors.Wrap(sberrors.ErrCodeAPIUnreachable, api.MessageUnreachable, apiErr.Cause).
			WithSuggestion("Check that the backend is running").
			WithSuggestion("Set STOCKBOOK_API_URL or api.base_url in ~/.stockbook/config.yaml")
	case apiErr.IsAuthorization():
		return sberrors.Wrap(sberrors.ErrCodeSessionExpired, "session expired or was revoked by the server", apiErr).
			WithSuggestion("Run 'stockbook auth login' to start a new session")
	case apiErr.Kind == api.KindRequest:
		return sberrors.Wrap(sberrors.ErrCodeAPIRequest, "request could not be sent", apiErr)
	default:
		return sberrors.Wrap(sberrors.ErrCodeAPIRequest, "request rejected by the server", apiErr)
	}
}

// PrintError writes err to w, styled for a terminal.
func PrintError(w io.Writer, err error, noColor bool) {
	if err == nil {
		return
	}
	s := NewStyles(w, noColor)
	err = EnhanceError(err)

	var coded *sberrors.StockbookError
	if !errors.As(err, &coded) {
		fmt.Fprintf(w, "%s %s\n", s.Error.Render("Error:"), err.Error())
		return
	}

	msg := coded.Message
	if coded.Cause != nil {
		msg += ": " + coded.Cause.Error()
	}
	fmt.Fprintf(w, "%s %s %s\n", s.Error.Render("Error:"), s.Muted.Render("["+string(coded.Code)+"]"), msg)

	if len(coded.Suggestions) > 0 {
		var b strings.Builder
		for _, sug := range coded.Suggestions {
			b.WriteString("\n  • " + sug)
		}
		fmt.Fprintf(w, "\n%s%s\n", s.Title.Render("Suggestions:"), b.String())
	}
	if coded.DocsURL != "" {
		fmt.Fprintf(w, "\n%s %s\n", s.Label.Render("Documentation:"), coded.DocsURL)
	}
}
