/*
Package backup creates and restores point-in-time snapshots of an
installation.

A snapshot lives at the sibling path <target>-backup and holds the complete
installation tree plus one SQL dump at its root. Create renames the live tree
into place (atomic within the parent directory) and then dumps the database;
a failed dump undoes the rename, so Create either fully succeeds or leaves
the target untouched. Materialize rebuilds a working copy of the tree at the
live path without mutating the snapshot. Restore deletes the current tree and
moves the snapshot back, which makes the round trip a byte-for-byte identity.

At most one snapshot exists per target. Create refuses to overwrite an
existing one; the operator either rolls back or removes it explicitly.
*/
package backup
