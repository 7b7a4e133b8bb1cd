// Package preflight provides readiness checks for the filesystem paths,
// listener ports, and multicast output the relay depends on.
//
// These checks run in two contexts:
//   - daemonrun calls RunAll before starting the daemon and logs every failed
//     check as a warning, so a missing background image or static directory
//     shows up in the run log instead of as a 404 in the browser.
//   - The CLI "psnrelay status" command renders the results as its System
//     Checks section. Port checks only run there when no daemon answers,
//     since a running daemon holds the ports itself.
package preflight
