package ai

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormDocument is a rendered form draft ready for download.
type FormDocument struct {
	Name        string
	ContentType string
	Data        []byte
}

// RenderForm writes the collected values as a two-column CSV, one row per field
// in form order. Missing values are left blank for the user to complete.
// Every call yields a distinct file name.
func RenderForm(formType string, collected map[string]string, now time.Time) (FormDocument, error) {
	fields := FormFields(formType)
	if len(fields) == 0 {
		return FormDocument{}, fmt.Errorf("unsupported form type: %s", formType)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"field", "value"}); err != nil {
		return FormDocument{}, err
	}
	for _, field := range fields {
		if err := w.Write([]string{field.Label, collected[field.Key]}); err != nil {
			return FormDocument{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return FormDocument{}, fmt.Errorf("render form %s: %w", formType, err)
	}

	return FormDocument{
		Name:        fmt.Sprintf("osha_%s_%s_%s.csv", strings.ToLower(formType), now.Format("20060102_150405"), uuid.NewString()),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}
