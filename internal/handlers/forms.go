package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"tourney-backend/internal/models"
)

const maxBodyBytes = 1 << 20

// parseForm fills form, a pointer to a struct, from a JSON body or from
// url-encoded body and query values keyed by each field's `form` tag. Body
// values win over query values. Supported field types are string, int64
// and *int64.
func parseForm(w http.ResponseWriter, r *http.Request, form any) error {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if r.Body == nil {
			return nil
		}
		if err := json.NewDecoder(r.Body).Decode(form); err != nil && !errors.Is(err, io.EOF) {
			return models.Invalid("body", "must be a valid JSON object")
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return models.Invalid("body", "must be a valid form")
	}

	formType := reflect.TypeOf(form).Elem()
	formValue := reflect.ValueOf(form).Elem()
	v := &models.ValidationError{}
	for i, n := 0, formType.NumField(); i < n; i++ {
		field := formType.Field(i)
		tag := field.Tag.Get("form")
		if tag == "" {
			continue
		}
		value := strings.TrimSpace(r.Form.Get(tag))
		if value == "" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			formValue.Field(i).SetString(r.Form.Get(tag))
		case reflect.Int64:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				v.Add(tag, "must be an integer")
				continue
			}
			formValue.Field(i).SetInt(n)
		case reflect.Pointer:
			if field.Type.Elem().Kind() != reflect.Int64 {
				return fmt.Errorf("unsupported form field type %v", field.Type)
			}
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				v.Add(tag, "must be an integer")
				continue
			}
			formValue.Field(i).Set(reflect.ValueOf(&n))
		default:
			return fmt.Errorf("unsupported form field type %v", field.Type)
		}
	}
	return v.Err()
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Invalid(name, "must be a positive integer")
	}
	return id, nil
}
