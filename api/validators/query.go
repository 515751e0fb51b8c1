package validators

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-playground/form/v4"

	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

// maxQueryValueLen caps any single query value read through DecodeQuery.
const maxQueryValueLen = 256

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("query")
	return d
}

// DecodeQuery binds URL query parameters onto dest using its `query` tags,
// then runs the struct's `validate` rules. Values are trimmed; absent or
// blank parameters leave the field's existing value (its default) in place.
//
//	type listQuery struct {
//		Limit  int    `query:"limit" validate:"min=1,max=100"`
//		Cursor string `query:"cursor" validate:"omitempty,max=128"`
//	}
func DecodeQuery(r *http.Request, dest any) error {
	values := url.Values{}
	for key, raw := range r.URL.Query() {
		if len(raw) == 0 {
			continue
		}
		if v := SanitizeString(raw[0], maxQueryValueLen); v != "" {
			values.Set(key, v)
		}
	}

	if err := queryDecoder.Decode(dest, values); err != nil {
		var decodeErrs form.DecodeErrors
		if errors.As(err, &decodeErrs) {
			details := map[string]string{}
			for name := range decodeErrs {
				details[name] = "is malformed"
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode query")
	}
	if err := queryValidate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// QueryString returns the trimmed query value capped at maxLen bytes.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}
