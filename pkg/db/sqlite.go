package db

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/angelmondragon/contactbook-backend/pkg/config"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// sqliteDriverName is go-sqlite3 with a casefold(text) SQL function, so text
// search folds the same way as the file store.
const sqliteDriverName = "sqlite3_casefold"

var registerSQLite sync.Once

func sqliteDriver() string {
	registerSQLite.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("casefold", Fold, true)
			},
		})
	})
	return sqliteDriverName
}

// Fold applies Unicode full case folding. A Caser is not safe for concurrent
// use, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// FoldColumn wraps col in the dialect's case-folding function.
func (c *Client) FoldColumn(col string) string {
	if c.dialect == config.DBDriverSQLite {
		return "casefold(" + col + ")"
	}
	return "LOWER(" + col + ")"
}

// FoldText folds a search needle the way FoldColumn folds the column.
func (c *Client) FoldText(s string) string {
	if c.dialect == config.DBDriverSQLite {
		return Fold(s)
	}
	return strings.ToLower(s)
}
