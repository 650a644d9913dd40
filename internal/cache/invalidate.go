package cache

import "budgetbook/internal/store"

// Purger is a cache that can be emptied.
type Purger interface {
	Purge()
}

// PurgeOnChange empties c whenever one of tables changes in s. The returned
// function removes the subscriptions.
func PurgeOnChange(s store.Store, c Purger, tables ...store.Table) func() {
	unsubs := make([]func(), 0, len(tables))
	for _, t := range tables {
		unsubs = append(unsubs, s.OnChange(t, func(store.ChangeEvent) { c.Purge() }))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
