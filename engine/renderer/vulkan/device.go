package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func DeviceCreate(context *VulkanContext) error {
	if err := selectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	presentSharesGraphicsQueue := context.Device.GraphicsQueueIndex == context.Device.PresentQueueIndex
	indices := []uint32{uint32(context.Device.GraphicsQueueIndex)}
	if !presentSharesGraphicsQueue {
		indices = append(indices, uint32(context.Device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   1,
		PpEnabledExtensionNames: VulkanSafeStrings([]string{vk.KhrSwapchainExtensionName}),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device")
		core.LogError(err.Error())
		return err
	}
	context.Device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var graphicsQueue vk.Queue
	vk.GetDeviceQueue(context.Device.LogicalDevice, uint32(context.Device.GraphicsQueueIndex), 0, &graphicsQueue)
	context.Device.GraphicsQueue = graphicsQueue

	var presentQueue vk.Queue
	vk.GetDeviceQueue(context.Device.LogicalDevice, uint32(context.Device.PresentQueueIndex), 0, &presentQueue)
	context.Device.PresentQueue = presentQueue

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create graphics command pool")
		core.LogError(err.Error())
		return err
	}
	context.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)
	}
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}
	context.Device.PhysicalDevice = nil
}

func selectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices")
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found")
		core.LogError(err.Error())
		return err
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("failed to enumerate physical devices")
	}

	for _, pd := range physicalDevices {
		graphicsIndex, presentIndex := findQueueFamilies(pd, context.Surface)
		if graphicsIndex < 0 || presentIndex < 0 {
			continue
		}

		support, err := DeviceQuerySwapchainSupport(pd, context.Surface)
		if err != nil || support.FormatCount == 0 || support.PresentModeCount == 0 {
			continue
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
		memory.Deref()

		context.Device = &VulkanDevice{
			PhysicalDevice:     pd,
			GraphicsQueueIndex: graphicsIndex,
			PresentQueueIndex:  presentIndex,
			SwapchainSupport:   support,
			Properties:         properties,
			Memory:             memory,
		}
		deviceName := string(properties.DeviceName[:FindFirstZeroInByteArray(properties.DeviceName[:])])
		core.LogInfo("Selected device: '%s'.", deviceName)
		return nil
	}

	err := fmt.Errorf("no physical device found which meets the requirements")
	core.LogError(err.Error())
	return err
}

func findQueueFamilies(pd vk.PhysicalDevice, surface vk.Surface) (graphics, present int32) {
	graphics, present = -1, -1

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if graphics < 0 && queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphics = int32(i)
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supportsPresent)
		if present < 0 && supportsPresent == vk.True {
			present = int32(i)
		}
	}
	return graphics, present
}

// DeviceQuerySwapchainSupport fetches the surface capabilities, formats and
// present modes. Re-queried on every swapchain (re)creation since a resize
// changes the capabilities.
func DeviceQuerySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	support := VulkanSwapchainSupportInfo{}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &capabilities); res != vk.Success {
		return support, fmt.Errorf("failed to query surface capabilities")
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	support.Capabilities = capabilities

	if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &support.FormatCount, nil); res != vk.Success {
		return support, fmt.Errorf("failed to query surface formats")
	}
	if support.FormatCount > 0 {
		support.Formats = make([]vk.SurfaceFormat, support.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &support.FormatCount, support.Formats); res != vk.Success {
			return support, fmt.Errorf("failed to query surface formats")
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &support.PresentModeCount, nil); res != vk.Success {
		return support, fmt.Errorf("failed to query present modes")
	}
	if support.PresentModeCount > 0 {
		support.PresentModes = make([]vk.PresentMode, support.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &support.PresentModeCount, support.PresentModes); res != vk.Success {
			return support, fmt.Errorf("failed to query present modes")
		}
	}

	return support, nil
}

func FindFirstZeroInByteArray(arr []byte) int {
	end := 0
	for i, b := range arr {
		if b == 0 {
			end = i
			break
		}
	}
	return end
}
