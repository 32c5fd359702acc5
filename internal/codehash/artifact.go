package codehash

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentReads = 4

// ArtifactSpec names a binary to read.
type ArtifactSpec struct {
	Label string
	Path  string
}

// ReadArtifact reads the binary at path and computes its digest.
func ReadArtifact(fs afero.Fs, label, path string) (*Artifact, error) {
	code, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", label, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s artifact %s is empty", label, path)
	}

	return &Artifact{
		Label: label,
		Path:  path,
		Code:  code,
		Hash:  Sum(code),
	}, nil
}

// ReadArtifacts reads and hashes the given binaries concurrently.
// The result preserves the order of specs.
func ReadArtifacts(ctx context.Context, fs afero.Fs, specs []ArtifactSpec) ([]*Artifact, error) {
	artifacts := make([]*Artifact, len(specs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentReads)

	for i, spec := range specs {
		i, spec := i, spec
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := ReadArtifact(fs, spec.Label, spec.Path)
			if err != nil {
				return err
			}
			artifacts[i] = a
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}
