// Package menu renders the host plugin palette that exposes pipeline tools.
//
// Each button shells out to `zbridge launch <tool>`, which either forwards the
// request to a running coordinator or becomes the coordinator itself.
package menu
