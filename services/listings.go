package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"neighborhood/db"
	"neighborhood/models"

	"github.com/go-redis/redis/v8"
)

const (
	LISTING_FEED_TTL        = 24 * time.Hour // TTL для кеша городской ленты
	MAX_LISTING_FEED_SIZE   = 1000           // Максимальное количество объявлений в ленте
	LISTING_FEED_KEY_PREFIX = "city_feed:"   // Префикс для ключей лент в Redis
	LISTING_KEY_PREFIX      = "listing:"     // Префикс для кеша объявлений
)

// CreateListingRequest запрос на публикацию объявления
type CreateListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	City        string `json:"city"`
	ImageURL    string `json:"image_url"`
}

type ListingService struct{}

func NewListingService() *ListingService {
	return &ListingService{}
}

func cityFeedKey(city string) string {
	return LISTING_FEED_KEY_PREFIX + strings.ToLower(city)
}

// CreateListing публикует объявление и ставит задачу обновления
// городской ленты в очередь
func (ls *ListingService) CreateListing(ctx context.Context, userID int64, req CreateListingRequest) (*models.Listing, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(req.City) == "" {
		return nil, &ValidationError{Field: "city"}
	}

	listing := &models.Listing{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		City:        req.City,
		ImageURL:    req.ImageURL,
		Status:      models.ListingStatusActive,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(listing).Error; err != nil {
		return nil, storeErr("create_listing", err)
	}

	if QueueServiceInstance != nil && RedisClient != nil {
		go QueueServiceInstance.EnqueueFeedRefresh(context.Background(), *listing, "create")
	} else {
		// Fallback - обновляем ленту синхронно, если очередь не инициализирована
		go ls.addListingToCityFeed(context.Background(), *listing)
	}

	return listing, nil
}

// CityFeed возвращает городскую ленту объявлений с курсорной пагинацией
func (ls *ListingService) CityFeed(ctx context.Context, city string, lastID int64, limit int) (*models.ListingFeedResponse, error) {
	if strings.TrimSpace(city) == "" {
		return nil, &ValidationError{Field: "city"}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	feedKey := cityFeedKey(city)

	// Пытаемся получить из кеша
	listings, err := ls.feedFromCache(ctx, feedKey, lastID, limit)
	if err == nil && len(listings) > 0 {
		return &models.ListingFeedResponse{
			Listings: listings,
			HasMore:  len(listings) == limit,
			LastID:   lastListingID(listings),
		}, nil
	}

	// Если в кеше нет или ошибка, строим ленту из БД
	listings, err = ls.feedFromDB(ctx, city, lastID, limit)
	if err != nil {
		return nil, err
	}

	go ls.cacheFeed(context.Background(), feedKey, listings)

	return &models.ListingFeedResponse{
		Listings: listings,
		HasMore:  len(listings) == limit,
		LastID:   lastListingID(listings),
	}, nil
}

// GetListing возвращает объявление по id
func (ls *ListingService) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	var listing models.Listing
	err := db.GetReadOnlyDB(ctx).First(&listing, listingID).Error
	if err != nil {
		return nil, storeErr("get_listing", err)
	}
	return &listing, nil
}

// MarkSold помечает объявление проданным. Менять статус может только автор.
func (ls *ListingService) MarkSold(ctx context.Context, userID, listingID int64) error {
	res := db.GetWriteDB(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND user_id = ?", listingID, userID).
		Updates(map[string]interface{}{"status": models.ListingStatusSold, "updated_at": time.Now()})
	if res.Error != nil {
		return storeErr("mark_sold", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("listing not found or access denied")
	}
	return nil
}

// DeleteListing удаляет объявление и убирает его из городской ленты
func (ls *ListingService) DeleteListing(ctx context.Context, userID, listingID int64) error {
	var listing models.Listing
	err := db.GetWriteDB(ctx).
		Where("id = ? AND user_id = ?", listingID, userID).
		First(&listing).Error
	if err != nil {
		return fmt.Errorf("listing not found or access denied: %w", err)
	}

	if err := db.GetWriteDB(ctx).Delete(&listing).Error; err != nil {
		return storeErr("delete_listing", err)
	}

	if QueueServiceInstance != nil && RedisClient != nil {
		go QueueServiceInstance.EnqueueFeedRefresh(context.Background(), listing, "delete")
	} else {
		go ls.removeListingFromCityFeed(context.Background(), listing)
	}
	return nil
}

// feedFromDB строит городскую ленту из базы данных
func (ls *ListingService) feedFromDB(ctx context.Context, city string, lastID int64, limit int) ([]models.FeedListing, error) {
	query := db.GetReadOnlyDB(ctx).
		Table("listings l").
		Select("l.id, l.user_id, u.first_name || ' ' || u.last_name as user_name, l.title, l.price_cents, l.category, l.city, l.created_at").
		Joins("JOIN \"users\" u ON l.user_id = u.id").
		Where("LOWER(l.city) = ? AND l.status = ?", strings.ToLower(city), models.ListingStatusActive).
		Order("l.created_at DESC, l.id DESC").
		Limit(limit)

	if lastID > 0 {
		query = query.Where("l.id < ?", lastID)
	}

	var listings []models.FeedListing
	if err := query.Scan(&listings).Error; err != nil {
		return nil, storeErr("city_feed", err)
	}
	return listings, nil
}

// feedFromCache получает ленту из Redis кеша
func (ls *ListingService) feedFromCache(ctx context.Context, feedKey string, lastID int64, limit int) ([]models.FeedListing, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}

	var start, stop int64 = 0, int64(limit - 1)
	if lastID > 0 {
		rank := RedisClient.ZRevRank(ctx, feedKey, strconv.FormatInt(lastID, 10)).Val()
		start = rank + 1
		stop = start + int64(limit) - 1
	}

	listingIDs, err := RedisClient.ZRevRange(ctx, feedKey, start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(listingIDs) == 0 {
		return []models.FeedListing{}, nil
	}

	pipe := RedisClient.Pipeline()
	cmds := make([]*redis.StringCmd, len(listingIDs))
	for i, id := range listingIDs {
		cmds[i] = pipe.Get(ctx, LISTING_KEY_PREFIX+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	var listings []models.FeedListing
	for _, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			continue
		}
		var item models.FeedListing
		if err := json.Unmarshal([]byte(val), &item); err == nil {
			listings = append(listings, item)
		}
	}
	return listings, nil
}

// cacheFeed кеширует городскую ленту в Redis
func (ls *ListingService) cacheFeed(ctx context.Context, feedKey string, listings []models.FeedListing) {
	if len(listings) == 0 || RedisClient == nil {
		return
	}

	pipe := RedisClient.Pipeline()
	pipe.Del(ctx, feedKey)

	for _, item := range listings {
		score := float64(item.CreatedAt.Unix())
		pipe.ZAdd(ctx, feedKey, &redis.Z{
			Score:  score,
			Member: strconv.FormatInt(item.ID, 10),
		})

		itemData, _ := json.Marshal(item)
		pipe.Set(ctx, LISTING_KEY_PREFIX+strconv.FormatInt(item.ID, 10), itemData, LISTING_FEED_TTL)
	}

	pipe.ZRemRangeByRank(ctx, feedKey, 0, -MAX_LISTING_FEED_SIZE-1)
	pipe.Expire(ctx, feedKey, LISTING_FEED_TTL)
	pipe.Exec(ctx)
}

// addListingToCityFeed добавляет объявление в кеш городской ленты
func (ls *ListingService) addListingToCityFeed(ctx context.Context, listing models.Listing) {
	if RedisClient == nil {
		return
	}

	var user models.User
	if err := db.GetReadOnlyDB(ctx).First(&user, listing.UserID).Error; err != nil {
		log.Printf("Failed to load listing author %d: %v", listing.UserID, err)
		return
	}

	item := models.FeedListing{
		ID:         listing.ID,
		UserID:     listing.UserID,
		UserName:   user.FirstName + " " + user.LastName,
		Title:      listing.Title,
		PriceCents: listing.PriceCents,
		Category:   listing.Category,
		City:       listing.City,
		CreatedAt:  listing.CreatedAt,
	}

	feedKey := cityFeedKey(listing.City)
	itemData, err := json.Marshal(item)
	if err != nil {
		return
	}

	pipe := RedisClient.Pipeline()
	pipe.ZAdd(ctx, feedKey, &redis.Z{
		Score:  float64(listing.CreatedAt.Unix()),
		Member: strconv.FormatInt(listing.ID, 10),
	})
	pipe.Set(ctx, LISTING_KEY_PREFIX+strconv.FormatInt(listing.ID, 10), itemData, LISTING_FEED_TTL)
	pipe.ZRemRangeByRank(ctx, feedKey, 0, -MAX_LISTING_FEED_SIZE-1)
	pipe.Expire(ctx, feedKey, LISTING_FEED_TTL)
	pipe.Exec(ctx)
}

// removeListingFromCityFeed убирает объявление из кеша городской ленты
func (ls *ListingService) removeListingFromCityFeed(ctx context.Context, listing models.Listing) {
	if RedisClient == nil {
		return
	}

	pipe := RedisClient.Pipeline()
	pipe.ZRem(ctx, cityFeedKey(listing.City), strconv.FormatInt(listing.ID, 10))
	pipe.Del(ctx, LISTING_KEY_PREFIX+strconv.FormatInt(listing.ID, 10))
	pipe.Exec(ctx)
}

// InvalidateCityFeed инвалидирует кеш городской ленты
func (ls *ListingService) InvalidateCityFeed(ctx context.Context, city string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}
	return RedisClient.Del(ctx, cityFeedKey(city)).Err()
}

// RebuildCityFeed перестраивает кеш городской ленты из БД
func (ls *ListingService) RebuildCityFeed(ctx context.Context, city string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}

	feedKey := cityFeedKey(city)
	RedisClient.Del(ctx, feedKey)

	listings, err := ls.feedFromDB(ctx, city, 0, MAX_LISTING_FEED_SIZE)
	if err != nil {
		return err
	}
	ls.cacheFeed(ctx, feedKey, listings)
	return nil
}

func lastListingID(listings []models.FeedListing) int64 {
	if len(listings) == 0 {
		return 0
	}
	return listings[len(listings)-1].ID
}
