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

// schemaSQLite is applied once at Open time against a SQLite-backed store.
// The three tables and their composite unique constraints are the only
// uniqueness primitives the layers above rely on.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS inode (
  id     INTEGER PRIMARY KEY AUTOINCREMENT,
  inuse  INTEGER NOT NULL DEFAULT 0,
  mode   INTEGER NOT NULL,
  uid    INTEGER NOT NULL,
  gid    INTEGER NOT NULL,
  atime  INTEGER NOT NULL,
  mtime  INTEGER NOT NULL,
  ctime  INTEGER NOT NULL,
  size   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS block (
  id       INTEGER PRIMARY KEY AUTOINCREMENT,
  inode_id INTEGER NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  data     BLOB NOT NULL,
  UNIQUE(inode_id, sequence)
);
CREATE TABLE IF NOT EXISTS tree_node (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  parent_id INTEGER REFERENCES tree_node(id) ON DELETE CASCADE,
  name      TEXT NOT NULL,
  inode_id  INTEGER NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
  UNIQUE(parent_id, name)
);
`

// schemaPostgres is the same schema expressed with Postgres-native
// autoincrement and blob types.
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS inode (
  id     BIGSERIAL PRIMARY KEY,
  inuse  BIGINT NOT NULL DEFAULT 0,
  mode   INTEGER NOT NULL,
  uid    INTEGER NOT NULL,
  gid    INTEGER NOT NULL,
  atime  BIGINT NOT NULL,
  mtime  BIGINT NOT NULL,
  ctime  BIGINT NOT NULL,
  size   BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS block (
  id       BIGSERIAL PRIMARY KEY,
  inode_id BIGINT NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
  sequence BIGINT NOT NULL,
  data     BYTEA NOT NULL,
  UNIQUE(inode_id, sequence)
);
CREATE TABLE IF NOT EXISTS tree_node (
  id        BIGSERIAL PRIMARY KEY,
  parent_id BIGINT REFERENCES tree_node(id) ON DELETE CASCADE,
  name      TEXT NOT NULL,
  inode_id  BIGINT NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
  UNIQUE(parent_id, name)
);
`
