package plugin

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"

	"github.com/broady/contract"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/schema"
)

var formEncoder = schema.NewEncoder()

func init() {
	formEncoder.SetAliasTag("json")
}

// File is a form-data body field sent as a file part.
// An empty ContentType is detected from Data.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

const (
	FormDataName = "form-data"
	FormURLName  = "form-url"
)

// FormData returns the plugin that encodes object bodies as multipart/form-data.
// Fields holding a File or []byte are sent as file parts.
func FormData() *Plugin {
	return &Plugin{
		Name: FormDataName,
		Request: func(_ context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			fields, err := formFields(contract.FormatFormData, req.Body)
			if err != nil {
				return nil, err
			}
			payload, err := encodeMultipart(fields)
			if err != nil {
				return nil, err
			}
			req.Payload = payload
			return req, nil
		},
	}
}

// FormURL returns the plugin that encodes object bodies as
// application/x-www-form-urlencoded.
func FormURL() *Plugin {
	return &Plugin{
		Name: FormURLName,
		Request: func(_ context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			fields, err := formFields(contract.FormatFormURL, req.Body)
			if err != nil {
				return nil, err
			}
			values := url.Values{}
			for _, f := range fields {
				values.Add(f.name, fmt.Sprint(f.value))
			}
			const ct = "application/x-www-form-urlencoded"
			req.setHeader("Content-Type", ct)
			req.Payload = &Payload{ContentType: ct, Data: []byte(values.Encode())}
			return req, nil
		},
	}
}

type formField struct {
	name  string
	value any
}

// formFields flattens a map or struct body into ordered fields.
// Slices expand into one field per element.
func formFields(format contract.RequestFormat, body any) ([]formField, error) {
	if body == nil {
		return nil, &InvalidBodyError{Format: format, Got: "nil"}
	}
	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, &InvalidBodyError{Format: format, Got: "nil"}
		}
		v = v.Elem()
	}

	var fields []formField
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, &InvalidBodyError{Format: format, Got: v.Type().String()}
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = appendField(fields, k, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())).Interface())
		}
	case reflect.Struct:
		dst := map[string][]string{}
		if err := formEncoder.Encode(v.Interface(), dst); err != nil {
			return nil, fmt.Errorf("plugin: encode %s body: %w", format, err)
		}
		keys := make([]string, 0, len(dst))
		for k := range dst {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, s := range dst[k] {
				fields = append(fields, formField{name: k, value: s})
			}
		}
	default:
		return nil, &InvalidBodyError{Format: format, Got: v.Kind().String()}
	}
	return fields, nil
}

func appendField(fields []formField, name string, value any) []formField {
	switch value.(type) {
	case nil:
		return fields
	case []byte, File, *File:
		return append(fields, formField{name: name, value: value})
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			fields = appendField(fields, name, rv.Index(i).Interface())
		}
		return fields
	}
	return append(fields, formField{name: name, value: value})
}

func encodeMultipart(fields []formField) (*Payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		var err error
		switch v := f.value.(type) {
		case File:
			err = writeFilePart(w, f.name, v)
		case *File:
			err = writeFilePart(w, f.name, *v)
		case []byte:
			err = writeFilePart(w, f.name, File{Name: f.name, Data: v})
		default:
			err = w.WriteField(f.name, fmt.Sprint(v))
		}
		if err != nil {
			return nil, fmt.Errorf("plugin: encode form-data field %q: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Payload{ContentType: w.FormDataContentType(), Data: buf.Bytes()}, nil
}

func writeFilePart(w *multipart.Writer, field string, f File) error {
	ct := f.ContentType
	if ct == "" {
		ct = mimetype.Detect(f.Data).String()
	}
	name := f.Name
	if name == "" {
		name = field
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}
