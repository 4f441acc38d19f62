package operations

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const zstdExt = ".zst"

// CompressZstd writes inputPath+".zst" and removes the original file.
func CompressZstd(inputPath string) (string, error) {
	outputPath := inputPath + zstdExt

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	writer, err := zstd.NewWriter(outFile)
	if err != nil {
		outFile.Close()
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to create Zstandard writer: %w", err)
	}
	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		outFile.Close()
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to compress file: %w", err)
	}
	// the frame is only complete once the writer is closed
	if err := writer.Close(); err != nil {
		outFile.Close()
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to finish Zstandard frame: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return "", fmt.Errorf("failed to remove original file: %w", err)
	}
	return outputPath, nil
}

// DecompressZstd expands inputPath into a new temporary file in dir and
// returns its path. The caller removes it.
func DecompressZstd(inputPath, dir string) (string, error) {
	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open compressed file: %w", err)
	}
	defer inFile.Close()

	reader, err := zstd.NewReader(inFile)
	if err != nil {
		return "", fmt.Errorf("failed to create Zstandard reader: %w", err)
	}
	defer reader.Close()

	outFile, err := os.CreateTemp(dir, "restore-*.sql")
	if err != nil {
		return "", fmt.Errorf("failed to create decompressed file: %w", err)
	}
	if _, err := io.Copy(outFile, reader); err != nil {
		outFile.Close()
		os.Remove(outFile.Name())
		return "", fmt.Errorf("failed to decompress file: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(outFile.Name())
		return "", fmt.Errorf("failed to close decompressed file: %w", err)
	}
	return outFile.Name(), nil
}
