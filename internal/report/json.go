package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/taotie111/browser-use/internal/explorer"
)

// Artifact file names written under the output directory.
const (
	MarkdownFile = "documentation.md"
	DataFile     = "exploration_data.json"
)

// WriteJSON marshals res as indented JSON.
func WriteJSON(w io.Writer, res *explorer.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode exploration data: %w", err)
	}
	return nil
}

// ReadJSON loads a result written by WriteJSON.
func ReadJSON(r io.Reader) (*explorer.Result, error) {
	var res explorer.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode exploration data: %w", err)
	}
	return &res, nil
}

// Persist writes the Markdown documentation and the JSON data file under
// dir, creating it when missing.
func Persist(dir string, res *explorer.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := os.Create(filepath.Join(dir, DataFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", DataFile, err)
	}
	defer data.Close()
	if err := WriteJSON(data, res); err != nil {
		return err
	}

	doc, err := os.Create(filepath.Join(dir, MarkdownFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", MarkdownFile, err)
	}
	defer doc.Close()
	if err := WriteMarkdown(doc, res); err != nil {
		return fmt.Errorf("render %s: %w", MarkdownFile, err)
	}
	return nil
}
