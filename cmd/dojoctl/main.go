// Command dojoctl - офлайн-инструмент додзё: считает отчёты о прогрессе по
// выгрузке учеников (YAML/JSON) и управляет схемой базы данных.
package main

import (
	"os"

	"github.com/dojo-hub/dojo-management/cmd/dojoctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
