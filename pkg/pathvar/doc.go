// Package pathvar rewrites absolute paths into path-variable form and back.
//
// A variable maps platform names to concrete path prefixes, for example:
//
//	vars := pathvar.Vars{
//	    "render": {"linux": "/render", "windows": "r:/", "darwin": "/Volume/render"},
//	}
//
// Replace turns a platform path whose prefix matches one of the variables
// into "{render}/relative/suffix", preferring the variable with the longest
// concrete prefix for the current platform. Expand performs the inverse.
// Output always uses forward slashes, even for Windows input.
package pathvar
