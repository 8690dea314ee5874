package httpadapter

import (
	_ "embed"
	"errors"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var contractYAML []byte

type contract struct {
	router routers.Router
}

var (
	contractOnce   sync.Once
	loadedContract *contract
)

// loadContract parses and validates the embedded API contract. The file is
// part of the build; a malformed contract is a programming error, not a
// runtime condition.
func loadContract() *contract {
	contractOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(contractYAML)
		if err != nil {
			panic("httpadapter: embedded openapi.yaml is malformed: " + err.Error())
		}
		if err := doc.Validate(loader.Context); err != nil {
			panic("httpadapter: embedded openapi.yaml is invalid: " + err.Error())
		}
		router, err := gorillamux.NewRouter(doc)
		if err != nil {
			panic("httpadapter: cannot route openapi.yaml: " + err.Error())
		}
		loadedContract = &contract{router: router}
	})
	return loadedContract
}

// middleware checks requests against the contract before they reach a
// handler. Paths outside the contract fall through untouched so the mux
// keeps serving metrics and the contract document itself. Bodies are left
// to the handlers; uploads should stream, not buffer, through validation.
func (c *contract) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := c.router.FindRoute(r)
		if err != nil {
			if errors.Is(err, routers.ErrPathNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if errors.Is(err, routers.ErrMethodNotAllowed) {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options:    &openapi3filter.Options{ExcludeRequestBody: true},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func serveContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(contractYAML)
}
