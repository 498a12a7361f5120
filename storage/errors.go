// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the storage layer. Callers in the fs and
// openfile packages translate these into the bridge's errno values.
var (
	ErrNotFound = errors.New("storage: row not found")
	ErrExist    = errors.New("storage: unique constraint violated")
	ErrNotEmpty = errors.New("storage: directory not empty")
)

// ClassifyError inspects a raw database error and rewrites unique-constraint
// violations into ErrExist, leaving every other error (including context
// cancellation and connectivity failures) untouched so the caller surfaces
// it as EIO.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrExist
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrExist
	}

	return err
}
