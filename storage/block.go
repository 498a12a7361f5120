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
	"context"
	"database/sql"
)

// Block is a fixed-size payload slice of one inode, addressed by
// 0-based sequence number. Payload length need not equal the configured
// block size: shorter payloads are the trailing content of a block, and
// missing sequence numbers are sparse holes that read as zero.
type Block struct {
	ID       int64
	InodeID  int64
	Sequence int64
	Data     []byte
}

// GetBlocksRange fetches every existing block of inode whose sequence
// lies in [from, from+count), in one range scan — the read-ahead query.
func (s *Store) GetBlocksRange(ctx context.Context, inodeID, from, count int64) ([]Block, error) {
	return getBlocksRange(ctx, s.db, inodeID, from, count)
}

func (s *Store) GetBlocksRangeTx(ctx context.Context, tx *sql.Tx, inodeID, from, count int64) ([]Block, error) {
	return getBlocksRange(ctx, tx, inodeID, from, count)
}

func getBlocksRange(ctx context.Context, e execer, inodeID, from, count int64) ([]Block, error) {
	rows, err := e.QueryContext(ctx,
		`SELECT id, inode_id, sequence, data FROM block
		 WHERE inode_id = ? AND sequence >= ? AND sequence < ?
		 ORDER BY sequence`,
		inodeID, from, from+count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.InodeID, &b.Sequence, &b.Data); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertBlock inserts a new block row, or updates the payload of an
// existing one, keyed on the (inode_id, sequence) unique constraint.
// Returns the row's persistent id.
func (s *Store) UpsertBlock(ctx context.Context, inodeID, sequence int64, data []byte) (int64, error) {
	return upsertBlock(ctx, s.db, s.driver, inodeID, sequence, data)
}

func (s *Store) UpsertBlockTx(ctx context.Context, tx *sql.Tx, inodeID, sequence int64, data []byte) (int64, error) {
	return upsertBlock(ctx, tx, s.driver, inodeID, sequence, data)
}

func upsertBlock(ctx context.Context, e execer, driver string, inodeID, sequence int64, data []byte) (int64, error) {
	row := e.QueryRowContext(ctx,
		`SELECT id FROM block WHERE inode_id = ? AND sequence = ?`, inodeID, sequence)
	var id int64
	err := row.Scan(&id)
	switch err {
	case nil:
		if _, err := e.ExecContext(ctx, `UPDATE block SET data = ? WHERE id = ?`, data, id); err != nil {
			return 0, err
		}
		return id, nil
	case sql.ErrNoRows:
		res, err := e.ExecContext(ctx,
			`INSERT INTO block (inode_id, sequence, data) VALUES (?, ?, ?)`, inodeID, sequence, data)
		if err != nil {
			return 0, ClassifyError(err)
		}
		return res.LastInsertId()
	default:
		return 0, err
	}
}

// DeleteBlocksAfter removes every block of inode whose sequence is
// strictly greater than lastSequence — used by truncate to drop past-EOF
// storage blocks.
func (s *Store) DeleteBlocksAfter(ctx context.Context, inodeID, lastSequence int64) error {
	return deleteBlocksAfter(ctx, s.db, inodeID, lastSequence)
}

func (s *Store) DeleteBlocksAfterTx(ctx context.Context, tx *sql.Tx, inodeID, lastSequence int64) error {
	return deleteBlocksAfter(ctx, tx, inodeID, lastSequence)
}

func deleteBlocksAfter(ctx context.Context, e execer, inodeID, lastSequence int64) error {
	_, err := e.ExecContext(ctx, `DELETE FROM block WHERE inode_id = ? AND sequence > ?`, inodeID, lastSequence)
	return err
}

// TruncateBlockPayload shortens the stored payload of the boundary block
// in place, used by truncate to cut a block that straddles the new EOF.
func (s *Store) TruncateBlockPayload(ctx context.Context, inodeID, sequence int64, data []byte) error {
	return truncateBlockPayload(ctx, s.db, inodeID, sequence, data)
}

func (s *Store) TruncateBlockPayloadTx(ctx context.Context, tx *sql.Tx, inodeID, sequence int64, data []byte) error {
	return truncateBlockPayload(ctx, tx, inodeID, sequence, data)
}

func truncateBlockPayload(ctx context.Context, e execer, inodeID, sequence int64, data []byte) error {
	_, err := e.ExecContext(ctx,
		`UPDATE block SET data = ? WHERE inode_id = ? AND sequence = ?`, data, inodeID, sequence)
	return err
}
