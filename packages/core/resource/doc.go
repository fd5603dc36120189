// Package resource resolves origin-tagged paths to readable streams.
//
// Two origins are recognized:
//   - file: paths on the local filesystem, relative to the working directory
//   - classpath: paths inside the packaged resource layers (user classpath
//     directories first, then the defaults embedded in the binary)
//
// A path without an origin tag is treated as a filesystem path.
package resource
