// cuber splits a textured OBJ mesh into a grid of streamable tiles with
// per-column texture atlases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch command {
	case "slice":
		err = cmdSlice(ctx, args)
	case "info":
		err = cmdInfo(ctx, args)
	case "wizard":
		err = cmdWizard(ctx, args)
	case "markup":
		err = cmdMarkup(ctx, args)
	case "bitmap":
		err = cmdBitmap(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`cuber - mesh tiling utility

Usage:
  cuber <command> [options]

Commands:
  slice [options] <mesh.obj>            Cut a mesh into tiles and texture atlases
  info [options] <mesh.obj>             Show mesh statistics and grid occupancy
  wizard [options] <mesh.obj>...        Recommend a grid size per mesh
  markup -t <texture> <mesh.obj>        Draw UV triangles over the texture
  bitmap [options] <bitmap>...          Decode or merge existence bitmaps
  config [-save]                        Print or save the effective config

Examples:
  cuber slice -x 8 -y 8 -z 4 -t model.jpg -tx 4 -ty 4 -formats obj,ebo model.obj
  cuber wizard -cubical model.obj
  cuber markup -t model.jpg -o markup.png model.obj
  cuber bitmap -x 2 -y 2 -z 2 Ag==
  cuber bitmap -merge output/metadata.json Ag== gA==`)
}
