package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ovpnadmin/internal/shared"
)

const (
	msgNameRequired = "Client name is required"
	msgNameCharset  = "Client name can only contain letters, numbers, hyphens and underscores"
	msgNameTooLong  = "Client name too long (max 64 characters)"
	msgCertDays     = "Certificate days must be positive"
)

type validationErrors []shared.ValidationError

func (v *validationErrors) add(path, msg string, value any) {
	*v = append(*v, shared.ValidationError{Location: "body", Path: path, Msg: msg, Value: value})
}

// write answers 400 and reports true when any error was collected.
func (v validationErrors) write(w http.ResponseWriter) bool {
	if len(v) == 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, shared.ValidationErrorResponse{Errors: v})
	return true
}

// checkBodyName validates a client name taken from a request body.
func (v *validationErrors) checkBodyName(name string) {
	switch {
	case name == "":
		v.add("name", msgNameRequired, name)
	case len(name) > shared.MaxClientNameLen:
		v.add("name", msgNameTooLong, name)
	case !shared.ValidClientName(name):
		v.add("name", msgNameCharset, name)
	}
}

// certDays parses an optional positive day count. Zero means absent.
func (v *validationErrors) certDays(n json.Number) int {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0
	}
	days, err := strconv.Atoi(s)
	if err != nil || days < 1 {
		v.add("certDays", msgCertDays, s)
		return 0
	}
	return days
}

// pathName returns the {name} URL parameter, answering 400 when it is not a
// valid client name.
func pathName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if !shared.ValidClientName(name) {
		writeError(w, http.StatusBadRequest, "Invalid client name")
		return "", false
	}
	return name, true
}
