package app

import (
	"io"

	"github.com/vk/gridseed/internal/registry"
	"github.com/vk/gridseed/modules/database"
	"github.com/vk/gridseed/modules/file"
	"github.com/vk/gridseed/modules/mongo"
	"github.com/vk/gridseed/modules/print"
	"github.com/vk/gridseed/modules/s3"
	"github.com/vk/gridseed/modules/socketio"
)

// coreModules is the definitive list of all hook actions that are compiled
// into the gridseed binary.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&print.Module{Out: outW},
		&file.Module{},
		&database.Module{},
		&s3.Module{},
		&mongo.Module{},
		&socketio.Module{},
	}
}
