// Package language enumerates the target languages the dubbing service can
// produce and normalizes user input onto them.
//
// The service accepts a closed set of twelve lowercase language words
// ("french", "japanese", ...). Users may type the word, an ISO 639 code, or a
// BCP 47 tag such as "pt-BR"; Parse maps all of them onto a Target so the rest
// of the client never handles free-form language strings.
package language
