// meshcluster is a CLI utility for partitioning glTF meshes into triangle clusters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	cluster "github.com/flywave/go-cluster"
	"github.com/flywave/go-cluster/internal/config"
	"github.com/flywave/go-cluster/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "cluster", "c":
		cmdCluster(args)
	case "info":
		cmdInfo(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshcluster - triangle mesh clustering utility

Usage:
  meshcluster <command> [options]

Commands:
  cluster [options] <in.gltf>...    Cluster every triangle primitive
  info <file.mcl>                   Show cluster file information
  config [-o path]                  Write the default configuration

Cluster options:
  -config <file>   YAML configuration
  -size <n>        Triangles per cluster (default 128)
  -scale <s>       Position scale
  -out <dir>       Output directory
  -gltf            Also write a .glb view with one primitive per cluster
  -debug           Verbose logging

Examples:
  meshcluster cluster -size 64 -out ./clusters model.glb
  meshcluster info ./clusters/model_0_0.mcl
  meshcluster config -o meshcluster.yaml`)
}

func cmdCluster(args []string) {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	size := fs.Int("size", 0, "Triangles per cluster (0 = config value)")
	scale := fs.Float64("scale", 0, "Position scale (0 = config value)")
	out := fs.String("out", "", "Output directory (empty = config value)")
	writeGltf := fs.Bool("gltf", false, "Write a .glb cluster view")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshcluster cluster [options] <in.gltf>...")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *size > 0 {
		cfg.Cluster.Size = *size
	}
	if *scale > 0 {
		cfg.Cluster.PositionScale = float32(*scale)
	}
	if *out != "" {
		cfg.Output.Dir = *out
	}
	if *writeGltf {
		cfg.Output.Gltf = true
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := cfg.Options()
	opts.Logger = logger.Log

	var (
		names  []string
		meshes []*cluster.Mesh
	)
	for _, path := range fs.Args() {
		prims, err := cluster.GltfToMesh(path)
		if err != nil {
			logger.Log.Error("failed to read mesh", zap.String("path", path), zap.Error(err))
			os.Exit(1)
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, p := range prims {
			m, err := p.ToMesh(cfg.Cluster.PositionScale)
			if err != nil {
				logger.Log.Warn("skipping primitive",
					zap.String("path", path),
					zap.Int("mesh", p.Mesh),
					zap.Int("primitive", p.Primitive),
					zap.Error(err))
				continue
			}
			names = append(names, fmt.Sprintf("%s_%d_%d", base, p.Mesh, p.Primitive))
			meshes = append(meshes, m)
		}
	}
	if len(meshes) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no triangle primitives found")
		os.Exit(1)
	}

	results, err := cluster.GenerateAll(context.Background(), meshes, opts)
	if err != nil {
		logger.Log.Error("clustering failed", zap.Error(err))
		os.Exit(1)
	}

	for i, res := range results {
		target := filepath.Join(cfg.Output.Dir, names[i]+cluster.CLUSTEREXT)
		if err := cluster.ClusterFileWriteTo(target, cluster.NewClusterFile(res, cfg.Cluster.Size)); err != nil {
			logger.Log.Error("failed to write clusters", zap.String("path", target), zap.Error(err))
			os.Exit(1)
		}
		if cfg.Output.Gltf {
			glb := filepath.Join(cfg.Output.Dir, names[i]+".glb")
			if err := cluster.WriteClustersGlb(glb, meshes[i], res.Clusters); err != nil {
				logger.Log.Error("failed to write glb", zap.String("path", glb), zap.Error(err))
				os.Exit(1)
			}
		}

		s := res.Stats
		fmt.Printf("%s\n", target)
		fmt.Printf("  Triangles: %d\n", s.Prims)
		fmt.Printf("  Grid:      %dx%dx%d (cell %.2f)\n", res.GridDims[0], res.GridDims[1], res.GridDims[2], res.CellSize)
		fmt.Printf("  Clusters:  %d (%d full, %d small)\n", s.Clusters, s.FullClusters, s.SmallClusters)
		fmt.Printf("  Size:      %.1f +/- %.1f\n", s.MeanSize, s.StdDevSize)
		fmt.Printf("  Groups:    %d (padding %d, fill %.1f%%)\n", s.Groups, s.Padding, s.FillRatio()*100)
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshcluster info <file.mcl>")
		os.Exit(1)
	}

	cf, err := cluster.ClusterFileReadFrom(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	minSize, maxSize, total := -1, 0, 0
	for _, c := range cf.Clusters {
		if minSize < 0 || len(c) < minSize {
			minSize = len(c)
		}
		if len(c) > maxSize {
			maxSize = len(c)
		}
		total += len(c)
	}
	if minSize < 0 {
		minSize = 0
	}

	fmt.Printf("File:         %s\n", args[0])
	fmt.Printf("Version:      %d\n", cf.Version)
	fmt.Printf("Cluster size: %d\n", cf.ClusterSize)
	fmt.Printf("Cell size:    %.2f\n", cf.CellSize)
	fmt.Printf("Triangles:    %d\n", cf.PrimCount)
	fmt.Printf("Clusters:     %d\n", len(cf.Clusters))
	fmt.Printf("Entries:      %d (min %d, max %d)\n", total, minSize, maxSize)
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("o", "meshcluster.yaml", "Output path")
	fs.Parse(args)

	if err := config.Default().SaveTo(*output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *output)
}
