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

package copdbias

import (
	"fmt"
	"strings"
)

// A DataValidationError reports raw input that is missing required
// columns or contains values that cannot be parsed. It halts the
// pipeline: no partial analysis table is written.
type DataValidationError struct {
	// Columns are the missing or malformed column names.
	Columns []string

	// Detail optionally describes a parse failure.
	Detail string
}

func (e *DataValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("copdbias: invalid raw data: %s", e.Detail)
	}
	return fmt.Sprintf("copdbias: raw data is missing required column(s): %s",
		strings.Join(e.Columns, ", "))
}

// A ThresholdComputationError reports that a percentile benchmark could
// not be computed because the underlying column has no non-missing
// values.
type ThresholdComputationError struct {
	// Column is the analysis name of the column whose percentile is
	// undefined.
	Column string
}

func (e *ThresholdComputationError) Error() string {
	return fmt.Sprintf("copdbias: cannot compute threshold: column %s has no non-missing values", e.Column)
}
