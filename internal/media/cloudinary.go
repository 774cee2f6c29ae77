// Package media はプロフィール写真のアップロード先を提供する。
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrUnsupportedType は画像以外のファイルが渡された場合のエラー。
var ErrUnsupportedType = errors.New("対応していない画像形式です")

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// CloudinaryUploader はCloudinaryに画像をアップロードする。
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryUploader はCLOUDINARY_URL形式の接続文字列からアップローダーを生成する。
// SDKはスキームや認証情報を検証しないため、起動時にここで形式を確認する。
func NewCloudinaryUploader(cloudinaryURL, folder string) (*CloudinaryUploader, error) {
	if err := validateCloudinaryURL(cloudinaryURL); err != nil {
		return nil, err
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("Cloudinaryの初期化に失敗しました: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

// validateCloudinaryURL は cloudinary://<api_key>:<api_secret>@<cloud_name> 形式かを確認する。
func validateCloudinaryURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("CLOUDINARY_URLの解析に失敗しました: %w", err)
	}
	if u.Scheme != "cloudinary" {
		return fmt.Errorf("CLOUDINARY_URLのスキームが不正です: %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("CLOUDINARY_URLにクラウド名がありません")
	}
	secret, _ := u.User.Password()
	if u.User.Username() == "" || secret == "" {
		return errors.New("CLOUDINARY_URLにAPIキーとシークレットがありません")
	}
	return nil
}

// CheckImageName はファイル名の拡張子が画像として受け付けられるか確認する。
func CheckImageName(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return ErrUnsupportedType
	}
	return nil
}

// Upload は画像をアップロードし、HTTPSの配信URLを返す。
// publicIDはユーザーIDなど、上書きしてよい一意な名前を渡す。
func (u *CloudinaryUploader) Upload(ctx context.Context, r io.Reader, filename, publicID string) (string, error) {
	if err := CheckImageName(filename); err != nil {
		return "", err
	}

	overwrite := true
	result, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       u.folder,
		PublicID:     publicID,
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("Cloudinaryへのアップロードに失敗しました: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("Cloudinaryへのアップロードに失敗しました: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}
