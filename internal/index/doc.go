// Package index holds the decoded entry tree of an archive and resolves
// inner paths against it.
//
// Directories keep their children in header order, which is the order
// directory listings must report. Resolution is iterative and follows
// symlinks relative to the directory that contains them, with a fixed
// budget of symlink expansions so cyclic links terminate.
package index
