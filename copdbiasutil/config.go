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

package copdbiasutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return f, fmt.Errorf("you need to specify an output file")
	}
	f = os.ExpandEnv(f)
	d := filepath.Dir(f)
	if _, err := os.Stat(d); err != nil {
		return f, fmt.Errorf("the directory for the output file (%s) doesn't exist", d)
	}
	return f, nil
}

// ensureDir creates directory d (and any parents) if it does not
// already exist.
func ensureDir(d string) error {
	if err := os.MkdirAll(d, 0755); err != nil {
		return fmt.Errorf("problem creating directory %s: %v", d, err)
	}
	return nil
}
