package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pairline/pairline-backend/pkg/logger"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile 디렉터리 협력자가 소유한 참가자 속성 (코어는 읽기만 한다)
type Profile struct {
	ParticipantID    string   `json:"participantId"`
	Gender           string   `json:"gender"`
	PreferredGenders []string `json:"preferredGenders"` // 비어 있으면 제한 없음
	Age              int      `json:"age"`
	PreferredAgeMin  int      `json:"preferredAgeMin"`
	PreferredAgeMax  int      `json:"preferredAgeMax"`
	Region           string   `json:"region"`
	PreferredRegions []string `json:"preferredRegions"` // 비어 있으면 제한 없음
	Online           bool     `json:"online"`
}

// Directory 참가자 프로필 조회 경계
type Directory interface {
	GetProfile(ctx context.Context, participantID string) (*Profile, error)
}

// HTTPDirectory 외부 디렉터리 서비스 HTTP 클라이언트
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory 디렉터리 클라이언트 생성
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	logger.Info("Using directory service", "url", baseURL)

	return &HTTPDirectory{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetProfile 프로필 조회
func (d *HTTPDirectory) GetProfile(ctx context.Context, participantID string) (*Profile, error) {
	url := fmt.Sprintf("%s/participants/%s/profile", d.baseURL, participantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	return &profile, nil
}

// StaticDirectory 개발/테스트용 인메모리 디렉터리
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{profiles: make(map[string]*Profile)}
}

// Put 프로필 등록 (기존 값 덮어쓰기)
func (d *StaticDirectory) Put(profile *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.ParticipantID] = profile
}

// GetProfile 프로필 조회
func (d *StaticDirectory) GetProfile(_ context.Context, participantID string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[participantID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}
