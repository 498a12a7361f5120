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

// TreeNode is a single name binding within a parent directory, pointing
// at an inode. ParentID is zero (sql NULL) only for the volume root.
type TreeNode struct {
	ID       int64
	ParentID sql.NullInt64
	Name     string
	InodeID  int64
}

// CreateRoot creates the distinguished root tree-node for a volume: a
// null parent and a name equal to the volume identifier.
func (s *Store) CreateRoot(ctx context.Context, volumeName string, inodeID int64) (int64, error) {
	return createTreeNode(ctx, s.db, sql.NullInt64{}, volumeName, inodeID)
}

// CreateChild binds name under parentID to inodeID.
func (s *Store) CreateChild(ctx context.Context, parentID int64, name string, inodeID int64) (int64, error) {
	return createTreeNode(ctx, s.db, sql.NullInt64{Int64: parentID, Valid: true}, name, inodeID)
}

func (s *Store) CreateChildTx(ctx context.Context, tx *sql.Tx, parentID int64, name string, inodeID int64) (int64, error) {
	return createTreeNode(ctx, tx, sql.NullInt64{Int64: parentID, Valid: true}, name, inodeID)
}

func createTreeNode(ctx context.Context, e execer, parentID sql.NullInt64, name string, inodeID int64) (int64, error) {
	res, err := e.ExecContext(ctx,
		`INSERT INTO tree_node (parent_id, name, inode_id) VALUES (?, ?, ?)`, parentID, name, inodeID)
	if err != nil {
		return 0, ClassifyError(err)
	}
	return res.LastInsertId()
}

// LookupChild resolves a single (parent, name) step of a path walk.
func (s *Store) LookupChild(ctx context.Context, parentID int64, name string) (*TreeNode, error) {
	return lookupChild(ctx, s.db, parentID, name)
}

func (s *Store) LookupChildTx(ctx context.Context, tx *sql.Tx, parentID int64, name string) (*TreeNode, error) {
	return lookupChild(ctx, tx, parentID, name)
}

func lookupChild(ctx context.Context, e execer, parentID int64, name string) (*TreeNode, error) {
	row := e.QueryRowContext(ctx,
		`SELECT id, parent_id, name, inode_id FROM tree_node WHERE parent_id = ? AND name = ?`, parentID, name)
	tn := &TreeNode{}
	err := row.Scan(&tn.ID, &tn.ParentID, &tn.Name, &tn.InodeID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tn, nil
}

// LookupRoot resolves the distinguished root tree-node by volume name.
func (s *Store) LookupRoot(ctx context.Context, volumeName string) (*TreeNode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, parent_id, name, inode_id FROM tree_node WHERE parent_id IS NULL AND name = ?`, volumeName)
	tn := &TreeNode{}
	err := row.Scan(&tn.ID, &tn.ParentID, &tn.Name, &tn.InodeID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tn, nil
}

// SelfTreeNode recovers a directory's own tree-node from just its inode
// id: the directory's "." entry lives under that tree-node, so its
// parent_id is the id returned. Used to repopulate the in-memory
// directory cache after an eviction.
func (s *Store) SelfTreeNode(ctx context.Context, dirInodeID int64) (*TreeNode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, parent_id, name, inode_id FROM tree_node WHERE id = (
		   SELECT parent_id FROM tree_node WHERE inode_id = ? AND name = '.'
		 )`, dirInodeID)
	tn := &TreeNode{}
	err := row.Scan(&tn.ID, &tn.ParentID, &tn.Name, &tn.InodeID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tn, nil
}

// ListChildren enumerates every tree-node directly under parentID, in
// insertion (id ascending) order, including "." and "..".
func (s *Store) ListChildren(ctx context.Context, parentID int64, afterID int64, limit int) ([]TreeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, name, inode_id FROM tree_node
		 WHERE parent_id = ? AND id > ? ORDER BY id LIMIT ?`, parentID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TreeNode
	for rows.Next() {
		var tn TreeNode
		if err := rows.Scan(&tn.ID, &tn.ParentID, &tn.Name, &tn.InodeID); err != nil {
			return nil, err
		}
		out = append(out, tn)
	}
	return out, rows.Err()
}

// CountChildren returns the number of entries directly under parentID,
// used by rmdir's "only . and .." emptiness check.
func (s *Store) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tree_node WHERE parent_id = ?`, parentID).Scan(&n)
	return n, err
}

// CountChildrenTx is the transactional form, used by Rmdir inside its
// own transaction so the emptiness check and the delete are consistent.
func (s *Store) CountChildrenTx(ctx context.Context, tx *sql.Tx, parentID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tree_node WHERE parent_id = ?`, parentID).Scan(&n)
	return n, err
}

// DeleteTreeNode removes a single tree-node by id.
func (s *Store) DeleteTreeNode(ctx context.Context, id int64) error {
	return deleteTreeNode(ctx, s.db, id)
}

func (s *Store) DeleteTreeNodeTx(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleteTreeNode(ctx, tx, id)
}

func deleteTreeNode(ctx context.Context, e execer, id int64) error {
	_, err := e.ExecContext(ctx, `DELETE FROM tree_node WHERE id = ?`, id)
	return err
}

// RenameTreeNodeTx relocates a tree-node in place: new name and/or new
// parent, in a single UPDATE.
func (s *Store) RenameTreeNodeTx(ctx context.Context, tx *sql.Tx, id, newParentID int64, newName string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tree_node SET parent_id = ?, name = ? WHERE id = ?`, newParentID, newName, id)
	return ClassifyError(err)
}

// RewriteDotDotTx repoints a directory's ".." entry at a new parent
// inode, used by rename when reparenting a directory.
func (s *Store) RewriteDotDotTx(ctx context.Context, tx *sql.Tx, dirInodeID, newParentInodeID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tree_node SET inode_id = ? WHERE parent_id = (
		   SELECT parent_id FROM tree_node WHERE inode_id = ? AND name = '.'
		 ) AND name = '..'`,
		newParentInodeID, dirInodeID)
	return err
}
