/*
The mirror package keeps a working copy of the model templates in sync with
the master templates.

The master (source) tree is the source of truth and is never modified. Each
child of the source root is mirrored independently: if the destination has a
child with the same name, it's removed entirely, and the source child is then
copied in fresh. Directories are replaced rather than merged, so files that
were deleted from a source directory disappear from the destination too.

Destination children whose names don't exist in the source are left alone.

A source child that can't be read, such as a broken symlink, fails the sync
but doesn't stop the other children from being mirrored. Its destination
counterpart is left untouched.

Copied directories keep the source permissions plus full owner access, so a
read-only master directory doesn't make the copy impossible to replace on
the next run.

A sync isn't transactional. If it's interrupted, some children will have
been replaced and others not. Because every child is fully replaced on each
run, re-running the sync always converges to the same destination.
*/
package mirror
