package seriesbench

import (
	"os"

	"github.com/goccy/go-json"
)

// WriteJSON serializes an Evaluation, a sweep result slice, or any other
// report value as indented JSON at path.
func WriteJSON(path string, v any) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0o644)
}
