package modules

import "github.com/mdufour/agid/internal/handler"

// RegisterAll registers every built-in handler module. Called once during
// bootstrap, before the server starts serving; a duplicate name is reported
// as an error the caller must treat as fatal.
func RegisterAll(r *handler.Registry) error {
	for _, register := range []func(*handler.Registry) error{
		registerCallRights,
		registerCallerIDLookup,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}
