package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jerbob92/wazero-pyext/generator/generator"
)

var (
	fileName string
	verbose  *bool
)

func init() {
	fileName = os.Getenv("GOFILE")
	flag.StringVar(&fileName, "file", fileName, "the Go file with the classes to process, defaults to $GOFILE")
	verbose = flag.Bool("v", false, "enable verbose logging")
}

func Usage() {
	fmt.Fprintf(os.Stderr, "Usage of wazero-pyext/generator:\n")
	fmt.Fprintf(os.Stderr, "\t//go:generate go run github.com/jerbob92/wazero-pyext/generator\n\n")
	fmt.Fprintf(os.Stderr, "Types marked with //pyext:class [name] and their methods marked with\n")
	fmt.Fprintf(os.Stderr, "//pyext:method [name] get a Register<Type> function in <file>_pyext.go.\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = Usage
	flag.Parse()

	dir, err := filepath.Abs(".")
	if err != nil {
		panic(err)
	}

	if fileName == "" {
		log.Fatal("No file given, run through go generate or pass -file")
	}

	if *verbose {
		log.Printf("generating classes for %s in %s", fileName, dir)
	}

	err = generator.Generate(dir, fileName)
	if err != nil {
		log.Fatal(err)
	}
}
