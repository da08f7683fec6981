package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdufour/agid/internal/dbpool"
	"github.com/mdufour/agid/internal/fastagi"
	"github.com/mdufour/agid/internal/handler"
)

// callRights decides whether an incoming DID call is allowed for the caller.
// The rightcallexten table is cached at setup time and rebuilt on reload;
// the per-call authorization rows are read per request. The cache is only
// written by the setup routine (handler write lock) and only read by the
// handle routine (handler read lock).
type callRights struct {
	extens []rightExten
}

type rightExten struct {
	rightID int64
	exten   string
}

func registerCallRights(r *handler.Registry) error {
	m := &callRights{}
	return r.Register("did_set_call_rights", m.handle, m.setup)
}

func (m *callRights) setup(ctx context.Context, cur *dbpool.Cursor) error {
	rows, err := cur.Query(ctx, "SELECT rightcallid, exten FROM rightcallexten")
	if err != nil {
		return fmt.Errorf("loading rightcallexten: %w", err)
	}
	defer rows.Close()

	var extens []rightExten
	for rows.Next() {
		var re rightExten
		if err := rows.Scan(&re.rightID, &re.exten); err != nil {
			return fmt.Errorf("scanning rightcallexten: %w", err)
		}
		extens = append(extens, re)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading rightcallexten: %w", err)
	}

	m.extens = extens
	return nil
}

func (m *callRights) handle(ctx context.Context, req *fastagi.Request, cur *dbpool.Cursor, args []string) error {
	srcNum, err := req.GetVariable("XIVO_SRCNUM")
	if err != nil {
		return err
	}
	incallID, err := req.GetVariable("XIVO_INCALL_ID")
	if err != nil {
		return err
	}

	var rightIDs []int64
	for _, re := range m.extens {
		if extensionMatches(srcNum, re.exten) {
			rightIDs = append(rightIDs, re.rightID)
		}
	}
	if len(rightIDs) == 0 {
		// No right covers the caller, the call goes through.
		return nil
	}

	placeholders := make([]string, len(rightIDs))
	queryArgs := make([]any, 0, len(rightIDs)+1)
	for i, id := range rightIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		queryArgs = append(queryArgs, id)
	}
	queryArgs = append(queryArgs, incallID)

	rows, err := cur.Query(ctx,
		"SELECT rightcall.authorization, rightcall.passwd "+
			"FROM rightcall "+
			"INNER JOIN rightcallmember "+
			"ON rightcall.id = rightcallmember.rightcallid "+
			"INNER JOIN incall "+
			"ON CAST(rightcallmember.typeval AS INTEGER) = incall.id "+
			"WHERE rightcall.id IN ("+strings.Join(placeholders, ", ")+") "+
			"AND rightcallmember.type = 'incall' "+
			fmt.Sprintf("AND incall.id = $%d ", len(rightIDs)+1)+
			"AND rightcall.commented = 0",
		queryArgs...)
	if err != nil {
		return fmt.Errorf("loading rightcall rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var authorization int
		var passwd string
		if err := rows.Scan(&authorization, &passwd); err != nil {
			return fmt.Errorf("scanning rightcall rule: %w", err)
		}

		if authorization == 0 {
			if err := req.SetVariable("XIVO_AUTHORIZATION", "DENY"); err != nil {
				return err
			}
			return handler.Reject("incoming call denied by call rights")
		}

		if err := req.SetVariable("XIVO_AUTHORIZATION", "ALLOW"); err != nil {
			return err
		}
		if passwd != "" {
			if err := req.SetVariable("XIVO_PASSWD", passwd); err != nil {
				return err
			}
		}
		return rows.Err()
	}

	return rows.Err()
}

// extensionMatches reports whether number matches an extension entry, either
// literally or as an Asterisk pattern (leading underscore, with X/Z/N digit
// classes and a trailing . or ! wildcard).
func extensionMatches(number, exten string) bool {
	if !strings.HasPrefix(exten, "_") {
		return number == exten
	}

	pattern := exten[1:]
	i := 0
	for _, pc := range pattern {
		switch {
		case pc == '.':
			return i < len(number)
		case pc == '!':
			return true
		case i >= len(number):
			return false
		}

		c := number[i]
		switch pc {
		case 'X', 'x':
			if c < '0' || c > '9' {
				return false
			}
		case 'Z', 'z':
			if c < '1' || c > '9' {
				return false
			}
		case 'N', 'n':
			if c < '2' || c > '9' {
				return false
			}
		default:
			if byte(pc) != c {
				return false
			}
		}
		i++
	}

	return i == len(number)
}
