// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package sqlite

import "database/sql"

// DB exposes the underlying handle so tests can tamper with rows.
func (s *AuditStore) DB() *sql.DB { return s.db }
