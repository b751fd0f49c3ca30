/*package lib contains the configuration and command-line plumbing shared by
the remora executable's modes. Almost all of the heavy lifting is done by
lib/'s subpackages; this package just turns user input into the Options
structs those subpackages consume.*/
package lib

// Version is the version of the software. This can potentially be used to
// differentiate between breaking changes to the archive format.
var Version uint64 = 0x1
