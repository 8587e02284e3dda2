/*
Package refcount provides counted references to shared values and a locked
map to keep them in.

Handle releases its value exactly once, when the last reference is dropped.
The count is atomic, so handles can be cloned and dropped on any goroutine
and outside of any map lock. A reader that copied a handle out of a Map keeps
the value alive after the entry itself was removed.

Map guards a plain Go map with a single xsync.RBMutex. Writers take the
exclusive lock, lookups the reader lock. With WithCopy and WithEvict a Map of
handles clones on the way in and out and drops evicted entries:

	m := refcount.NewMap[uint32, refcount.Handle[*T]](
		refcount.WithCopy[uint32](refcount.Handle[*T].Clone),
		refcount.WithEvict(func(_ uint32, h refcount.Handle[*T]) { h.Drop() }),
	)

Thread Safety:

	All Map methods and Handle.Clone/Drop are safe for concurrent use. A
	single Handle variable must not be dropped or assigned concurrently.
*/
package refcount
