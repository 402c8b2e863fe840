/*
Copyright © 2024 the copdbias authors.
This file is part of copdbias.

copdbias is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

copdbias is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with copdbias.  If not, see <http://www.gnu.org/licenses/>.
*/

package model

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/healthmodel/copdbias"
	"github.com/healthmodel/copdbias/internal/hash"
)

// A Handle is the persisted form of a fitted model: the formula, a
// fingerprint of the analysis table the model was fit to, and the
// engine's serialized state as an opaque blob. Later pipeline stages
// reload the handle instead of refitting; the fingerprint guards
// against aggregating draws from a stale fit.
type Handle struct {
	// Engine identifies the external engine and version that owns
	// the blob format.
	Engine string

	// Formula is the formula the model was fit with.
	Formula Formula

	// TableFingerprint identifies the analysis table used for
	// fitting.
	TableFingerprint string

	// Blob is the engine's serialized model state. Its internal
	// format is owned entirely by the engine.
	Blob []byte
}

// NewHandle creates a handle binding the engine state blob to the
// table it was fit to.
func NewHandle(t copdbias.Table, f Formula, engine string, blob []byte) *Handle {
	return &Handle{
		Engine:           engine,
		Formula:          f,
		TableFingerprint: hash.Fingerprint(t),
		Blob:             blob,
	}
}

// Verify checks that t is the same analysis table the handle's model
// was fit to.
func (h *Handle) Verify(t copdbias.Table) error {
	if fp := hash.Fingerprint(t); fp != h.TableFingerprint {
		return fmt.Errorf("model: analysis table does not match the fitted model (fingerprint %s, want %s)", fp, h.TableFingerprint)
	}
	return nil
}

// Save writes the handle to w as a gob stream
// (format description at https://golang.org/pkg/encoding/gob/).
func Save(w io.Writer, h *Handle) error {
	if err := gob.NewEncoder(w).Encode(h); err != nil {
		return fmt.Errorf("model: saving fitted-model handle: %v", err)
	}
	return nil
}

// Load reads a handle previously written by Save.
func Load(r io.Reader) (*Handle, error) {
	var h Handle
	if err := gob.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("model: loading fitted-model handle: %v", err)
	}
	return &h, nil
}
