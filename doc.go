// Package asar overlays packed archive files on the real filesystem.
//
// An archive is a single file, conventionally named with a ".asar"
// suffix, that holds a directory tree: a JSON header describing files,
// directories and symlinks, followed by the concatenated file contents.
// Through an [FS], a path such as /app/resources/app.asar/lib/index.js
// reads the entry lib/index.js from the archive, while every path outside
// an archive is served by the os package unchanged.
//
// # Reading through the overlay
//
//	fsys := asar.New(asar.WithNoArchive(asar.NoArchiveFromEnv()))
//	defer fsys.Close()
//
//	data, err := fsys.ReadFile("/app/resources/app.asar/package.json")
//	entries, err := fsys.ReadDir("/app/resources/app.asar/lib")
//
// Entries are read-only. Files packed with [CreateWithUnpack] live in the
// sibling directory app.asar.unpacked and behave like real files: they can
// be opened for writing and report their real stat.
//
// Errors use the sentinels of this package, which also match the matching
// syscall.Errno and io/fs errors:
//
//	_, err := fsys.Stat("/app/resources/app.asar/missing")
//	errors.Is(err, fs.ErrNotExist) // true
//	errors.Is(err, syscall.ENOENT) // true
//
// # Async calls
//
// Every primitive has a callback form ([FS.StatAsync], [FS.ReadAsync], ...).
// Callbacks are delivered by the FS's event loop, on a later turn than
// the call that registered them:
//
//	fsys.ReadFileAsync(name, func(data []byte, err error) { ... })
//	fsys.Loop().RunUntilIdle()
//
// # Building archives
//
//	err := asar.Create(ctx, "./app", "./app.asar",
//	    asar.CreateWithUnpack("*.node"),
//	)
//
// Use [OpenArchive] for direct access to a single archive, including
// [Archive.Extract].
package asar
