package modules

import (
	"context"
	"fmt"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/fastagi"
	"github.com/mdufour/agid/internal/handler"
)

// callerIDLookup rewrites the caller-id display name from the phonebook.
// The whole directory is cached at setup time so the per-call path never
// touches the database.
type callerIDLookup struct {
	names map[string]string
}

func registerCallerIDLookup(r *handler.Registry) error {
	m := &callerIDLookup{}
	return r.Register("callerid_forphones", m.handle, m.setup)
}

func (m *callerIDLookup) setup(ctx context.Context, cur *dbpool.Cursor) error {
	rows, err := cur.Query(ctx,
		"SELECT phonebooknumber.number, "+
			"phonebook.firstname || ' ' || phonebook.lastname "+
			"FROM phonebook "+
			"INNER JOIN phonebooknumber "+
			"ON phonebooknumber.phonebookid = phonebook.id")
	if err != nil {
		return fmt.Errorf("loading phonebook: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var number, displayName string
		if err := rows.Scan(&number, &displayName); err != nil {
			return fmt.Errorf("scanning phonebook entry: %w", err)
		}
		names[number] = displayName
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading phonebook: %w", err)
	}

	m.names = names
	return nil
}

func (m *callerIDLookup) handle(ctx context.Context, req *fastagi.Request, cur *dbpool.Cursor, args []string) error {
	callerID := req.Env("agi_callerid")
	if callerID == "" {
		return nil
	}

	name, ok := m.names[callerID]
	if !ok {
		return nil
	}

	return req.SetVariable("CALLERID(name)", name)
}
