package contracts

import (
	"context"

	"github.com/meysamhadeli/kbchat/file_scanner/models"
)

type IFileScanner interface {
	ScanFile(path string) (*models.FileRecord, error)
	ScanDirectory(ctx context.Context, dirPath string) (*models.ScanResult, error)
	ScanPath(ctx context.Context, inputPath string) (*models.PathScan, error)
}
