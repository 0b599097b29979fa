// Package all registers all shell commands.
package all

import (
	// commands
	_ "github.com/JFDuval/flexsea-v2/pkg/cli/cmds/frames"
	_ "github.com/JFDuval/flexsea-v2/pkg/cli/cmds/stresstest"
)
