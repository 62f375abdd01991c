// Package license parses and holds signed usagemesh license keys.
//
// A license key is the prefix "umlk_" followed by an HS256-signed JWT whose
// claims name the licensee, the tier and any explicitly granted features.
// State answers the availability question for a feature; Holder keeps the
// currently installed State and swaps it atomically on reload.
package license
