package tile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/osmroute/osmroute/internal/osmdata"
)

// mergeFiles unions the nodes and ways of every file into one OSM XML
// document written to w.
func mergeFiles(ctx context.Context, w io.Writer, paths []string) error {
	collection := osmdata.NewCollection()

	for _, path := range paths {
		if err := decodeFile(ctx, path, collection); err != nil {
			return err
		}
	}

	collection.StampCoordinates()
	return collection.Encode(w)
}

func decodeFile(ctx context.Context, path string, collection *osmdata.Collection) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := osmdata.Decode(ctx, f, collection.Handler()); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
