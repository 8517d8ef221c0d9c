package session

import (
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled reports that the operator dismissed the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// Picker opens a native file dialog and returns the chosen path.
type Picker interface {
	PickFile() (string, error)
}

// nativePicker shows the OS file dialog.
type nativePicker struct{}

// NewNativePicker returns a Picker backed by the OS dialog.
func NewNativePicker() Picker {
	return nativePicker{}
}

func (nativePicker) PickFile() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Seleccionar comprobante"),
		zenity.FileFilters{
			{
				Name: "Comprobantes",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif",
					"*.pdf", "*.heic", "*.heif",
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickCanceled
		}
		return "", fmt.Errorf("opening file dialog: %w", err)
	}
	return path, nil
}
