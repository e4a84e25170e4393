// Package interact handles the interactive edges of a browser session:
// questions the agent asks the user, and tool permission grants.
//
// Both structures exist so that connection cleanup has something
// concrete to tear down: CancelAll fails any future still waiting on an
// answer from a vanished browser, and ClearSession drops its permission
// grants. Nothing here persists across connections.
package interact
