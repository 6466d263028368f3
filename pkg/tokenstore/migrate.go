package tokenstore

import (
	"fmt"

	"github.com/germanamz/hostbridge/pkg/kv"
)

// migrate applies, in order, every migration not yet recorded for the
// account. Applying a migration deletes the token and marks the flag. It
// reports whether at least one migration fired.
func (s *Store) migrate(key string) (bool, error) {
	fired := false

	for _, name := range s.migrations {
		flag := migrationKey(name, key)

		done, err := kv.GetBool(s.kv, flag)
		if err != nil {
			return fired, fmt.Errorf("tokenstore: migration %s: read flag: %w", name, err)
		}
		if done {
			continue
		}

		if err := s.delete(key); err != nil {
			return fired, fmt.Errorf("tokenstore: migration %s: %w", name, err)
		}

		if err := kv.SetBool(s.kv, flag, true); err != nil {
			return fired, fmt.Errorf("tokenstore: migration %s: mark applied: %w", name, err)
		}

		s.logger.Info("token migration applied", "migration", name, "account", key)
		fired = true
	}

	return fired, nil
}

// Applied reports whether the named migration has run for address.
func (s *Store) Applied(name, address string) (bool, error) {
	key, err := normalize(address)
	if err != nil {
		return false, err
	}

	return kv.GetBool(s.kv, migrationKey(name, key))
}

func migrationKey(name, key string) string {
	return name + "-" + key
}
