package user

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/skillswap/internal/media"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository/memory"
	"github.com/hitoshi/skillswap/internal/security"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// --- モック ---

type mockRatings struct {
	summaries map[string]model.RatingSummary
}

func (m *mockRatings) AggregateFor(ctx context.Context, userID string) (model.RatingSummary, error) {
	return m.summaries[userID], nil
}

func (m *mockRatings) AggregatesFor(ctx context.Context, userIDs []string) (map[string]model.RatingSummary, error) {
	out := make(map[string]model.RatingSummary)
	for _, id := range userIDs {
		if s, ok := m.summaries[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type mockUploader struct {
	uploadFn func(ctx context.Context, r io.Reader, filename, publicID string) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, r io.Reader, filename, publicID string) (string, error) {
	return m.uploadFn(ctx, r, filename, publicID)
}

// --- テストヘルパー ---

func newTestService(t *testing.T, uploader PhotoUploader) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	users := []*model.User{
		{ID: "u-alice", Email: "alice@example.com", Name: "Alice", PasswordHash: "h",
			SkillsOffered: []string{"Guitar"}, IsPublic: true, CreatedAt: base},
		{ID: "u-bob", Email: "bob@example.com", Name: "Bob", PasswordHash: "h",
			SkillsWanted: []string{"Guitar"}, IsPublic: true, CreatedAt: base.Add(time.Hour)},
		{ID: "u-priv", Email: "priv@example.com", Name: "Priv", PasswordHash: "h",
			SkillsOffered: []string{"Chess"}, IsPublic: false, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "u-banned", Email: "banned@example.com", Name: "Banned", PasswordHash: "h",
			SkillsOffered: []string{"Go"}, IsPublic: true, IsBanned: true, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "u-empty", Email: "empty@example.com", Name: "Empty", PasswordHash: "h",
			IsPublic: true, CreatedAt: base.Add(4 * time.Hour)},
		{ID: "u-admin", Email: "admin@example.com", Name: "Admin", PasswordHash: "h",
			IsAdmin: true, CreatedAt: base.Add(5 * time.Hour)},
	}
	for _, u := range users {
		if err := store.Users().Create(context.Background(), u); err != nil {
			t.Fatalf("ユーザー作成に失敗: %v", err)
		}
	}

	ratings := &mockRatings{summaries: map[string]model.RatingSummary{
		"u-alice": {Count: 2, Mean: 4.5},
	}}
	svc := NewService(store.Users(), ratings, security.NewTextSanitizer(), uploader)
	svc.now = func() time.Time { return base.Add(24 * time.Hour) }
	return svc, store
}

func assertCategory(t *testing.T, err error, category string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError with category %q", err, category)
	}
	if apiErr.Category != category {
		t.Errorf("Category = %q, want %q", apiErr.Category, category)
	}
}

// --- Profile / Directory ---

func TestProfile_HiddenUsersLookMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	anon := visibility.Anonymous

	_, missingErr := svc.Profile(ctx, anon, "u-nobody")
	for _, id := range []string{"u-priv", "u-banned"} {
		_, err := svc.Profile(ctx, anon, id)
		if err == nil {
			t.Fatalf("Profile(%s) error = nil", id)
		}
		if err.Error() != missingErr.Error() {
			t.Errorf("Profile(%s) error = %q, want identical to missing %q", id, err, missingErr)
		}
	}
}

func TestProfile_PublicViewCarriesRating(t *testing.T) {
	svc, _ := newTestService(t, nil)

	view, err := svc.Profile(context.Background(), visibility.Viewer{UserID: "u-bob"}, "u-alice")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if view.Audience != visibility.AudiencePublic {
		t.Errorf("Audience = %q, want public", view.Audience)
	}
	if view.Email != nil {
		t.Error("public view exposes email")
	}
	if view.Rating.Count != 2 || view.Rating.Mean != 4.5 {
		t.Errorf("Rating = %+v", view.Rating)
	}
}

func TestProfile_SelfAndAdminSeePrivate(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	self, err := svc.Me(ctx, visibility.Viewer{UserID: "u-priv"})
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if self.Email == nil || *self.Email != "priv@example.com" {
		t.Errorf("self view Email = %v", self.Email)
	}

	admin, err := svc.Profile(ctx, visibility.Viewer{UserID: "u-admin", IsAdmin: true}, "u-banned")
	if err != nil {
		t.Fatalf("Profile(admin) error = %v", err)
	}
	if admin.IsBanned == nil || !*admin.IsBanned {
		t.Error("admin view should expose banned flag")
	}
}

func TestDirectory_Filter(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter visibility.DirectoryFilter
		want   string
	}{
		{"提供・希望スキルの部分一致", visibility.DirectoryFilter{Query: "GUIT"}, "u-alice,u-bob"},
		{"名前の部分一致", visibility.DirectoryFilter{Query: "bo"}, "u-bob"},
		{"非公開ユーザーのスキルには一致しない", visibility.DirectoryFilter{Query: "chess"}, ""},
		{"時間帯タグを持つユーザーがいない", visibility.DirectoryFilter{Availability: model.AvailabilityWeekends}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := svc.Directory(ctx, visibility.Anonymous, tt.filter)
			if err != nil {
				t.Fatalf("Directory() error = %v", err)
			}
			var ids []string
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			if got := strings.Join(ids, ","); got != tt.want {
				t.Errorf("Directory ids = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirectory_OnlyDiscoverableUsers(t *testing.T) {
	svc, _ := newTestService(t, nil)

	views, err := svc.Directory(context.Background(), visibility.Anonymous, visibility.DirectoryFilter{})
	if err != nil {
		t.Fatalf("Directory() error = %v", err)
	}
	var ids []string
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	if strings.Join(ids, ",") != "u-alice,u-bob" {
		t.Errorf("Directory ids = %v, want [u-alice u-bob]", ids)
	}
	if views[1].Rating.Count != 0 {
		t.Errorf("unrated user Rating = %+v, want zero", views[1].Rating)
	}
}

// --- UpdateProfile ---

func TestUpdateProfile_NormalizesFields(t *testing.T) {
	svc, store := newTestService(t, nil)

	name := "  <b>Bobby</b> "
	email := "Bobby@Example.com"
	offered := []string{"Cooking", "cooking", " Baking "}
	avail := []string{"Weekends", "evenings", "weekends"}
	private := false

	view, err := svc.UpdateProfile(context.Background(), "u-bob", UpdateProfileInput{
		Name: &name, Email: &email, SkillsOffered: &offered, Availability: &avail, IsPublic: &private,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if view.Name != "Bobby" {
		t.Errorf("Name = %q", view.Name)
	}
	if strings.Join(view.SkillsOffered, ",") != "Cooking,Baking" {
		t.Errorf("SkillsOffered = %v", view.SkillsOffered)
	}
	if len(view.Availability) != 2 {
		t.Errorf("Availability = %v", view.Availability)
	}

	stored, _ := store.Users().FindByID(context.Background(), "u-bob")
	if stored.Email != "bobby@example.com" || stored.IsPublic {
		t.Errorf("stored = %+v", stored)
	}
	if strings.Join(stored.SkillsWanted, ",") != "Guitar" {
		t.Errorf("untouched SkillsWanted changed: %v", stored.SkillsWanted)
	}
	if stored.PasswordHash != "h" {
		t.Error("password hash changed by profile update")
	}
}

func TestUpdateProfile_Errors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	empty := "   "
	bad := "not-an-email"
	taken := "ALICE@example.com"
	badAvail := []string{"midnight"}

	tests := []struct {
		name     string
		in       UpdateProfileInput
		category string
	}{
		{"空の名前", UpdateProfileInput{Name: &empty}, model.ErrCategoryValidation},
		{"不正なメール", UpdateProfileInput{Email: &bad}, model.ErrCategoryValidation},
		{"使用済みメール", UpdateProfileInput{Email: &taken}, model.ErrCategoryConflict},
		{"不明な時間帯", UpdateProfileInput{Availability: &badAvail}, model.ErrCategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, "u-bob", tt.in)
			assertCategory(t, err, tt.category)
		})
	}
}

// --- UpdatePhoto ---

func TestUpdatePhoto_WithoutUploader(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.UpdatePhoto(context.Background(), "u-bob", strings.NewReader("x"), "a.png")
	assertCategory(t, err, model.ErrCategoryUnavailable)
}

func TestUpdatePhoto_StoresURL(t *testing.T) {
	var gotID string
	svc, _ := newTestService(t, &mockUploader{
		uploadFn: func(ctx context.Context, r io.Reader, filename, publicID string) (string, error) {
			gotID = publicID
			return "https://res.cloudinary.com/demo/image/upload/skillswap/" + publicID + ".png", nil
		},
	})

	view, err := svc.UpdatePhoto(context.Background(), "u-bob", strings.NewReader("x"), "a.png")
	if err != nil {
		t.Fatalf("UpdatePhoto() error = %v", err)
	}
	if gotID != "u-bob" {
		t.Errorf("publicID = %q, want u-bob", gotID)
	}
	if !strings.HasSuffix(view.PhotoURL, "/u-bob.png") {
		t.Errorf("PhotoURL = %q", view.PhotoURL)
	}
}

func TestUpdatePhoto_UnsupportedType(t *testing.T) {
	svc, _ := newTestService(t, &mockUploader{
		uploadFn: func(ctx context.Context, r io.Reader, filename, publicID string) (string, error) {
			return "", media.ErrUnsupportedType
		},
	})

	_, err := svc.UpdatePhoto(context.Background(), "u-bob", strings.NewReader("x"), "a.svg")
	assertCategory(t, err, model.ErrCategoryValidation)
}

// --- 管理者操作 ---

func TestSetBanned(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	admin := visibility.Viewer{UserID: "u-admin", IsAdmin: true}

	view, err := svc.SetBanned(ctx, admin, "u-alice", true)
	if err != nil {
		t.Fatalf("SetBanned() error = %v", err)
	}
	if view.IsBanned == nil || !*view.IsBanned {
		t.Error("returned view not banned")
	}

	if _, err := svc.Profile(ctx, visibility.Anonymous, "u-alice"); err == nil {
		t.Error("banned user still visible to anonymous viewer")
	}
	dir, _ := svc.Directory(ctx, visibility.Anonymous, visibility.DirectoryFilter{})
	for _, v := range dir {
		if v.ID == "u-alice" {
			t.Error("banned user still listed in directory")
		}
	}

	if _, err := svc.SetBanned(ctx, admin, "u-alice", false); err != nil {
		t.Fatalf("unban error = %v", err)
	}
	u, _ := store.Users().FindByID(ctx, "u-alice")
	if u.IsBanned {
		t.Error("unban did not persist")
	}
}

func TestSetBanned_Errors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	admin := visibility.Viewer{UserID: "u-admin", IsAdmin: true}

	_, err := svc.SetBanned(ctx, visibility.Viewer{UserID: "u-bob"}, "u-alice", true)
	assertCategory(t, err, model.ErrCategoryAuthorization)

	_, err = svc.SetBanned(ctx, admin, "u-admin", true)
	assertCategory(t, err, model.ErrCategoryValidation)

	_, err = svc.SetBanned(ctx, admin, "u-nobody", true)
	assertCategory(t, err, model.ErrCategoryNotFound)
}

func TestAdminList_IncludesEveryone(t *testing.T) {
	svc, _ := newTestService(t, nil)

	views, err := svc.AdminList(context.Background(), visibility.Viewer{UserID: "u-admin", IsAdmin: true})
	if err != nil {
		t.Fatalf("AdminList() error = %v", err)
	}
	if len(views) != 6 {
		t.Errorf("len = %d, want 6", len(views))
	}

	_, err = svc.AdminList(context.Background(), visibility.Viewer{UserID: "u-bob"})
	assertCategory(t, err, model.ErrCategoryAuthorization)
}

func TestParseAvailabilityList_Empty(t *testing.T) {
	got, err := ParseAvailabilityList(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("ParseAvailabilityList(nil) = (%v, %v)", got, err)
	}
}
