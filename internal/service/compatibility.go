package service

import (
	"github.com/pairline/pairline-backend/internal/directory"
	"github.com/pairline/pairline-backend/internal/models"
)

// compatibleAt 완화 단계에 따른 상호 호환성 검사.
// 0단계: 성별/나이/지역 선호 완전 일치 (양방향)
// 1단계: 나이 범위를 ageWiden만큼 확장, 지역 무시
// 2단계: 성별 호환만 확인 - 모든 대기자가 결국 매칭되도록 보장하는 단계
func compatibleAt(stage models.RelaxationStage, a, b *directory.Profile, ageWiden int) bool {
	if !genderCompatible(a, b) {
		return false
	}
	if stage >= models.StageAny {
		return true
	}

	widen := 0
	if stage == models.StageWidened {
		widen = ageWiden
	}
	if !ageMutuallyContained(a, b, widen) {
		return false
	}

	if stage == models.StageExact && !regionOverlap(a, b) {
		return false
	}
	return true
}

// genderCompatible 양방향 성별 선호 검사 (빈 목록은 제한 없음)
func genderCompatible(a, b *directory.Profile) bool {
	return containsOrAny(a.PreferredGenders, b.Gender) &&
		containsOrAny(b.PreferredGenders, a.Gender)
}

// ageMutuallyContained 각자의 나이가 상대의 선언된 범위 안에 있는지
// 양방향으로 확인한다. 범위 미설정(0,0)은 제한 없음.
func ageMutuallyContained(a, b *directory.Profile, widen int) bool {
	return ageInRange(b.Age, a.PreferredAgeMin, a.PreferredAgeMax, widen) &&
		ageInRange(a.Age, b.PreferredAgeMin, b.PreferredAgeMax, widen)
}

func ageInRange(age, min, max, widen int) bool {
	if min == 0 && max == 0 {
		return true
	}
	return age >= min-widen && age <= max+widen
}

// regionOverlap 각자의 지역이 상대의 선호 지역 집합에 포함되는지 확인
func regionOverlap(a, b *directory.Profile) bool {
	return containsOrAny(a.PreferredRegions, b.Region) &&
		containsOrAny(b.PreferredRegions, a.Region)
}

func containsOrAny(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
